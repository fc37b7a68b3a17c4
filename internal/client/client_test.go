package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	name string
	data string
}

func (m memSource) Name() string { return m.name }

func (m memSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.data)), nil
}

type failingSource struct{}

func (failingSource) Name() string                 { return "missing.csv" }
func (failingSource) Open() (io.ReadCloser, error) { return nil, errors.New("no such file") }

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithTimeout(5*time.Second))
}

func TestAnalyze_SendsFileAndRows(t *testing.T) {
	var gotRows, gotName, gotBody string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AnalyzePath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotRows = r.FormValue("rows")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		data, _ := io.ReadAll(f)
		gotName = hdr.Filename
		gotBody = string(data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"filename": "data.csv", "rows": 2, "columns": 2,
			"head_html": "<table></table>",
			"description": [
				{"column": "a", "dtype": "int64", "non_null_count": 2, "null_count": 0},
				{"column": "b", "dtype": "object", "non_null_count": 1, "null_count": 1}
			]
		}`)
	})

	res, err := c.Analyze(context.Background(), memSource{"data.csv", "a,b\n1,x\n2,\n"}, 5)
	require.NoError(t, err)

	assert.Equal(t, "5", gotRows)
	assert.Equal(t, "data.csv", gotName)
	assert.Equal(t, "a,b\n1,x\n2,\n", gotBody)
	assert.Equal(t, 2, res.Rows)
	require.Len(t, res.Description, 2)
	assert.Equal(t, "object", res.Description[1].DType)
	assert.Equal(t, 1, res.Description[1].NullCount)
}

func TestDescribe_SendsRepeatedColumns(t *testing.T) {
	var got []string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DescribePath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got = r.MultipartForm.Value["columns"]
		_, _ = io.WriteString(w, `{"stats_html": "<table>stats</table>"}`)
	})

	res, err := c.Describe(context.Background(), memSource{"data.csv", "x"}, []string{"price", "qty"})
	require.NoError(t, err)
	assert.Equal(t, []string{"price", "qty"}, got)
	assert.Equal(t, "<table>stats</table>", res.StatsHTML)
}

func TestPlot_SendsTypeAndColumn(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PlotPath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "pie", r.FormValue("plot_type"))
		assert.Equal(t, "city", r.FormValue("column"))
		_, _ = io.WriteString(w, `{"labels": ["Oslo", "Rome"], "data": [3, 1]}`)
	})

	res, err := c.Plot(context.Background(), memSource{"data.csv", "x"}, "pie", "city")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oslo", "Rome"}, res.Labels)
	assert.Equal(t, []float64{3, 1}, res.Data)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantService   string
		wantTransport bool
	}{
		{
			name:        "error field with 200",
			status:      http.StatusOK,
			body:        `{"error": "Selected columns are not numeric or do not exist."}`,
			wantService: "Selected columns are not numeric or do not exist.",
		},
		{
			name:        "error field with 400",
			status:      http.StatusBadRequest,
			body:        `{"error": "Invalid file type. Please upload a CSV file."}`,
			wantService: "Invalid file type. Please upload a CSV file.",
		},
		{
			name:        "500 without message",
			status:      http.StatusInternalServerError,
			body:        `{}`,
			wantService: "Server error (500 Internal Server Error)",
		},
		{
			name:          "malformed success body",
			status:        http.StatusOK,
			body:          `<html>proxy</html>`,
			wantTransport: true,
		},
		{
			name:          "malformed error body",
			status:        http.StatusBadGateway,
			body:          `bad gateway`,
			wantTransport: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Describe(context.Background(), memSource{"data.csv", "x"}, []string{"a"})
			require.Error(t, err)

			if tt.wantTransport {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, UnexpectedErrorMessage, err.Error())
				return
			}
			var se *ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantService, se.Error())
			assert.Equal(t, tt.status, se.StatusCode)
		})
	}
}

func TestTransportError_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithTimeout(time.Second))
	_, err := c.Analyze(context.Background(), memSource{"data.csv", "x"}, 5)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "analyze", te.Op)
	assert.Contains(t, te.Detail(), "analyze")
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Analyze(ctx, memSource{"data.csv", "x"}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenFailureIsNotTransport(t *testing.T) {
	c := New("http://127.0.0.1:0")
	_, err := c.Analyze(context.Background(), failingSource{}, 5)
	require.Error(t, err)

	var te *TransportError
	assert.False(t, errors.As(err, &te))
	assert.Contains(t, err.Error(), "missing.csv")
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://localhost:5000", New("http://localhost:5000/").BaseURL())
}
