package lines

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"free text", "every monday morning", 0},
		{"dotted dates", "03.05.2024, 04.05.2024; 06.05.2024", 3},
		{"short year", "3.5.24 4.5.24", 2},
		{"iso dates", "2024-05-03\n2024-05-04", 2},
		{"slashes", "03/05/2024,04/05/2024", 2},
		{"duplicates counted once", "03.05.2024, 2024-05-03, 3/5/2024", 1},
		{"mixed with words", "visits on 03.05.2024 and 10.05.2024", 2},
		{"invalid day", "31.02.2024", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountDates(tt.text))
		})
	}
}
