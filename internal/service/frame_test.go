package service

import (
	"math"
	"strings"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = `city,unit_price,qty,active,note
Basra,1.5,3,true,
Erbil,2.25,,false,x
Basra,NA,7,true,y
Mosul,4,1,false,z
`

func TestReadFrame_Types(t *testing.T) {
	f, err := ReadFrame(strings.NewReader(salesCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"city", "unit_price", "qty", "active", "note"}, f.Header)
	assert.Equal(t, 4, f.Rows())
	assert.Equal(t, []string{DTypeObject, DTypeFloat, DTypeFloat, DTypeBool, DTypeObject}, f.Types)

	assert.Equal(t, 4, f.NonNull(0))
	assert.Equal(t, 3, f.NonNull(1))
	assert.Equal(t, 3, f.NonNull(4))
	assert.Equal(t, []float64{1.5, 2.25, 4}, f.Floats(1))
	assert.Equal(t, "NaN", f.Cell(2, 1))
	assert.True(t, f.Numeric(2))
	assert.False(t, f.Numeric(3))
}

func TestReadFrame_InferType(t *testing.T) {
	tests := []struct {
		name   string
		values string
		want   string
	}{
		{"ints", "1\n2\n-3", DTypeInt},
		{"ints with null", "1\n\n3", DTypeFloat},
		{"floats", "1\n2.5\n1e3", DTypeFloat},
		{"all null", "NA\nnull", DTypeFloat},
		{"text", "1\ntwo", DTypeObject},
		{"bools", "True\nfalse", DTypeBool},
		{"bools with null", "True\nNA", DTypeObject},
		{"nan spellings", "1\nNAN\n nan ", DTypeFloat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ReadFrame(strings.NewReader("v,pad\n" + strings.ReplaceAll(tt.values, "\n", ",p\n") + ",p\n"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Types[0])
		})
	}
}

func TestReadFrame_Shape(t *testing.T) {
	t.Run("duplicate headers", func(t *testing.T) {
		f, err := ReadFrame(strings.NewReader("a,a,a.1,a\n1,2,3,4\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "a.2", "a.1", "a.3"}, f.Header)
	})

	t.Run("short rows are padded", func(t *testing.T) {
		f, err := ReadFrame(strings.NewReader("a,b\n1\n2,3\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, f.NonNull(1))
		assert.Equal(t, DTypeFloat, f.Types[1])
	})

	t.Run("long rows fail", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader("a,b\n1,2,3\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2 fields, saw 3")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader(""))
		assert.ErrorIs(t, err, errNoColumns)
	})

	t.Run("byte order mark", func(t *testing.T) {
		f, err := ReadFrame(strings.NewReader("\xef\xbb\xbfa\n1\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, f.Header)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader("a\n\xff\n"))
		assert.ErrorIs(t, err, errNotUTF8)
	})
}

func TestDescribeColumns(t *testing.T) {
	f, err := ReadFrame(strings.NewReader("x,y,name\n1,10,a\n2,,b\n3,30,c\n4,40,d\n"))
	require.NoError(t, err)

	summaries, err := describeColumns(f, []string{"name", "missing", "x", "x", "y"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	x := summaries[0].desc
	assert.Equal(t, "x", summaries[0].name)
	assert.Equal(t, 4, x.Count)
	assert.InDelta(t, 2.5, x.Mean, 1e-9)
	assert.InDelta(t, 1.290994, x.Std, 1e-6)
	assert.InDelta(t, 1.75, x.DescriptionPercentiles[0].Value, 1e-9)
	assert.InDelta(t, 2.5, x.DescriptionPercentiles[1].Value, 1e-9)
	assert.InDelta(t, 3.25, x.DescriptionPercentiles[2].Value, 1e-9)
	assert.Equal(t, 3, summaries[1].desc.Count)

	_, err = describeColumns(f, []string{"name", "missing"})
	assert.ErrorIs(t, err, errNoNumericColumns)
}

func TestStatsHTML(t *testing.T) {
	f, err := ReadFrame(strings.NewReader("x\n5\n"))
	require.NoError(t, err)
	summaries, err := describeColumns(f, []string{"x"})
	require.NoError(t, err)

	html := statsHTML(summaries)
	assert.Contains(t, html, `<table class="dataframe">`)
	assert.Contains(t, html, ">x</th>")
	for _, label := range []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"} {
		assert.Contains(t, html, label)
	}
	assert.Contains(t, html, "5.000000")
	// std of a single value is undefined
	assert.Contains(t, html, "NaN")
}

func TestHeadHTML(t *testing.T) {
	f, err := ReadFrame(strings.NewReader(salesCSV))
	require.NoError(t, err)

	html := headHTML(f, 2)
	assert.Contains(t, html, ">unit_price</th>")
	assert.Contains(t, html, "Erbil")
	assert.NotContains(t, html, "Mosul")

	assert.Contains(t, headHTML(f, 10), "Mosul")
}

func TestLinearPercentile(t *testing.T) {
	data := stats.Float64Data{4, 1, 3, 2}
	for percent, want := range map[float64]float64{0: 1, 25: 1.75, 50: 2.5, 100: 4} {
		got, err := linearPercentile(data, percent)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9, "percent %v", percent)
	}

	got, err := linearPercentile(nil, 50)
	assert.Error(t, err)
	assert.True(t, math.IsNaN(got))
}

func TestPlotData(t *testing.T) {
	f, err := ReadFrame(strings.NewReader(salesCSV))
	require.NoError(t, err)

	t.Run("value counts", func(t *testing.T) {
		res, err := plotData(f, "city", PlotBar)
		require.NoError(t, err)
		assert.Equal(t, []string{"Basra", "Erbil", "Mosul"}, res.Labels)
		assert.Equal(t, []float64{2, 1, 1}, res.Data)
	})

	t.Run("histogram", func(t *testing.T) {
		res, err := plotData(f, "qty", PlotHistogram)
		require.NoError(t, err)
		require.Len(t, res.Labels, histogramBins)
		var total float64
		for _, v := range res.Data {
			total += v
		}
		assert.Equal(t, float64(3), total)
		assert.Equal(t, float64(1), res.Data[histogramBins-1])
	})

	t.Run("histogram skips nan cells", func(t *testing.T) {
		nf, err := ReadFrame(strings.NewReader("x\n1\n nan\n3\nNAN\n"))
		require.NoError(t, err)
		assert.Equal(t, DTypeFloat, nf.Types[0])
		assert.Equal(t, 2, nf.NonNull(0))
		assert.Equal(t, []float64{1, 3}, nf.Floats(0))

		res, err := plotData(nf, "x", PlotHistogram)
		require.NoError(t, err)
		var total float64
		for _, v := range res.Data {
			total += v
		}
		assert.Equal(t, float64(2), total)
	})

	t.Run("histogram needs numbers", func(t *testing.T) {
		_, err := plotData(f, "city", PlotHistogram)
		assert.EqualError(t, err, "Histogram requires a numeric column.")
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := plotData(f, "nope", PlotPie)
		assert.EqualError(t, err, "Column 'nope' does not exist.")
	})
}

func TestValueCounts_FoldsTail(t *testing.T) {
	values := make([]string, 0, maxCategories+5)
	for i := range maxCategories + 5 {
		values = append(values, string(rune('A'+i)))
	}
	values = append(values, "A")

	res := valueCounts(values)
	require.Len(t, res.Labels, maxCategories+1)
	assert.Equal(t, "A", res.Labels[0])
	assert.Equal(t, float64(2), res.Data[0])
	assert.Equal(t, otherLabel, res.Labels[maxCategories])
	assert.Equal(t, float64(5), res.Data[maxCategories])
}

func TestHistogram_IgnoresNaN(t *testing.T) {
	res, err := histogram([]float64{math.NaN(), 0, math.NaN(), 10})
	require.NoError(t, err)
	assert.Equal(t, float64(1), res.Data[0])
	assert.Equal(t, float64(1), res.Data[histogramBins-1])
}

func TestHistogram_ConstantColumn(t *testing.T) {
	res, err := histogram([]float64{3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, "2.5-2.6", res.Labels[0])
	filled := 0
	for _, v := range res.Data {
		if v > 0 {
			filled++
			assert.Equal(t, float64(3), v)
		}
	}
	assert.Equal(t, 1, filled)
}
