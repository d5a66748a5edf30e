package api

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"12", 1200, false},
		{"12.5", 1250, false},
		{"12.50", 1250, false},
		{"0.99", 99, false},
		{".5", 50, false},
		{"-3.10", -310, false},
		{"99999999.99", MaxMoney, false},
		{"100000000", 0, true},
		{"1.234", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{".", 0, true},
		{"1e3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMoney(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		m    Money
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{1250, "12.50"},
		{-310, "-3.10"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("Money(%d).String() = %q, want %q", tt.m, got, tt.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(Product{Name: "mug", Price: 1999})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["price"] != "19.99" {
		t.Errorf("price = %v, want %q", m["price"], "19.99")
	}

	var in ProductInput
	if err := json.Unmarshal([]byte(`{"price": 7.5}`), &in); err != nil {
		t.Fatalf("Unmarshal number: %v", err)
	}
	if in.Price == nil || *in.Price != 750 {
		t.Errorf("price from number = %v, want 750", in.Price)
	}

	if err := json.Unmarshal([]byte(`{"price": "1.999"}`), &in); err == nil {
		t.Error("expected error for three decimal places")
	}
}
