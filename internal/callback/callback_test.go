package callback

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		action  string
		args    []int64
		wantErr bool
	}{
		{raw: "menu:12", action: ActionMenu, args: []int64{12}},
		{raw: "stores:3:2", action: ActionStores, args: []int64{3, 2}},
		{raw: "back", action: ActionBack},
		{raw: "", wantErr: true},
		{raw: ":1", wantErr: true},
		{raw: "store:abc", wantErr: true},
		{raw: "store:" + strings.Repeat("1", 64), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			d, err := Parse(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Parse(%q) error = %v, want ErrMalformed", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			if d.Action != tt.action || len(d.Args) != len(tt.args) {
				t.Fatalf("Parse(%q) = %+v", tt.raw, d)
			}
			for i, a := range tt.args {
				if d.Arg(i) != a {
					t.Errorf("Arg(%d) = %d, want %d", i, d.Arg(i), a)
				}
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{Menu(7), Stores(7, 3), Store(9), StoreMenu(9), Recommend(0), Back(), Home()} {
		d, err := Parse(raw)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", raw, err)
			continue
		}
		if d.String() != raw {
			t.Errorf("String() = %q, want %q", d.String(), raw)
		}
	}
	if (Data{}).Arg(3) != 0 {
		t.Error("Arg() out of range should be 0")
	}
}
