package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"12.344", "12.34", true},
		{" 2.50 ", "2.50", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.004", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestMoneyJSONIsNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{MustMoney("1234.5")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"amount":1234.5}` {
		t.Fatalf("unexpected json %s", b)
	}

	var back struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount":99.99}`), &back); err != nil {
		t.Fatal(err)
	}
	if back.Amount.String() != "99.99" {
		t.Fatalf("unexpected amount %s", back.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount":null}`), &back); err != nil || !back.Amount.IsZero() {
		t.Fatalf("null should decode to zero: %v %s", err, back.Amount)
	}
}

func TestSumBreakdown(t *testing.T) {
	total, pct := SumBreakdown([]MonthlyBreakdownItem{
		{Total: MustMoney("60"), Percentage: 60},
		{Total: MustMoney("40"), Percentage: 40},
	})
	if total.String() != "100.00" || pct != 100 {
		t.Fatalf("got %s %v", total, pct)
	}
}
