package cmd

import "testing"

func TestParseValues(t *testing.T) {
	values, err := parseValues("0.90, 0.91,0.89")
	if err != nil {
		t.Fatalf("parseValues failed: %v", err)
	}
	want := []float64{0.90, 0.91, 0.89}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d]: expected %v, got %v", i, want[i], values[i])
		}
	}

	if _, err := parseValues("0.9,abc"); err == nil {
		t.Error("non-numeric value should fail")
	}
}

func TestRunSuffixGrouping(t *testing.T) {
	cases := []struct {
		tag  string
		want string
	}{
		{"expTAra_wrn40x2_1", "expTAra_wrn40x2"},
		{"expTAra_wrn40x2_12", "expTAra_wrn40x2"},
		{"baseline", "baseline"},
		{"run_2_final", "run_2_final"},
	}
	for _, tc := range cases {
		if got := runSuffix.ReplaceAllString(tc.tag, ""); got != tc.want {
			t.Errorf("%q: expected group %q, got %q", tc.tag, tc.want, got)
		}
	}
}
