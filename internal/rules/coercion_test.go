package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/solatis/mailrules/internal/types"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr error
	}{
		{name: "days upper case", value: "30 D", want: 30 * 24 * time.Hour},
		{name: "days lower case", value: "7 d", want: 7 * 24 * time.Hour},
		{name: "months are 30 days", value: "2 M", want: 60 * 24 * time.Hour},
		{name: "surrounding whitespace", value: "  1   d ", want: 24 * time.Hour},
		{name: "zero window", value: "0 D", want: 0},
		{name: "absolute date rejected", value: "01/04/2023", wantErr: types.ErrMalformedDate},
		{name: "missing unit", value: "30", wantErr: types.ErrMalformedDate},
		{name: "unknown unit", value: "3 Y", wantErr: types.ErrMalformedDate},
		{name: "non-integer count", value: "1.5 D", wantErr: types.ErrMalformedDate},
		{name: "negative count", value: "-3 D", wantErr: types.ErrMalformedDate},
		{name: "too many parts", value: "3 D ago", wantErr: types.ErrMalformedDate},
		{name: "empty", value: "", wantErr: types.ErrMalformedDate},
		{name: "window too large in days", value: "100001 D", wantErr: types.ErrMalformedDate},
		{name: "window too large in months", value: "4000 M", wantErr: types.ErrMalformedDate},
		{name: "count overflow", value: "99999999999999999999 D", wantErr: types.ErrMalformedDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindow(tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseWindow(%q) error = %v, want %v", tt.value, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWindow(%q) error = %v, want nil", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("ParseWindow(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
