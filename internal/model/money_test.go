package model

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
		{"10", 1000, false},
		{"0.5", 50, false},
		{"0.50", 50, false},
		{"12.75", 1275, false},
		{".25", 25, false},
		{"", 0, true},
		{"1.234", 0, true},
		{"1.", 0, true},
		{"-1", 0, true},
		{"-0.50", 0, true},
		{"+1.00", 0, true},
		{"1.-5", 0, true},
		{"92233720368547758.07", 0, true},
		{"92233720368547757", 9223372036854775700, false},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMoney(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(Money(3000))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"30.00"` {
		t.Errorf("expected \"30.00\", got %s", data)
	}

	var m Money
	if err := json.Unmarshal([]byte(`7.5`), &m); err != nil {
		t.Fatalf("Unmarshal number: %v", err)
	}
	if m != 750 {
		t.Errorf("expected 750, got %d", m)
	}
}
