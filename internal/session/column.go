package session

import "fmt"

// DType is the coarse type of a column as reported by the analysis service.
type DType int

const (
	// DTypeOther covers text, booleans, dates and anything else non-numeric.
	DTypeOther DType = iota
	// DTypeInt is a 64-bit integer column.
	DTypeInt
	// DTypeFloat is a 64-bit floating point column.
	DTypeFloat
)

// ParseDType maps a raw service dtype to a DType. Only "int64" and
// "float64" are numeric.
func ParseDType(raw string) DType {
	switch raw {
	case "int64":
		return DTypeInt
	case "float64":
		return DTypeFloat
	default:
		return DTypeOther
	}
}

// Numeric reports whether descriptive statistics can be requested for the type.
func (d DType) Numeric() bool {
	return d == DTypeInt || d == DTypeFloat
}

func (d DType) String() string {
	switch d {
	case DTypeInt:
		return "int"
	case DTypeFloat:
		return "float"
	case DTypeOther:
		return "other"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Column describes a single column of the selected file.
type Column struct {
	Name         string `json:"name"`
	DType        DType  `json:"-"`
	RawType      string `json:"dtype"`
	NonNullCount int    `json:"non_null_count"`
	NullCount    int    `json:"null_count"`
}

// Total is the number of rows the column covers.
func (c Column) Total() int {
	return c.NonNullCount + c.NullCount
}
