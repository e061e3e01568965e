package client

import "testing"

func TestSanitizeModelJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1,}\n```":             `{"a": 1}`,
		"Sure! {\"a\": [1, 2,]} hope it helps": `{"a": [1, 2]}`,
		"{\n  // note\n  \"a\": 1 /* x */\n}":    "{\n\n  \"a\": 1 \n}",
	}
	for in, want := range cases {
		if got := SanitizeModelJSON(in); got != want {
			t.Errorf("SanitizeModelJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFocusResult(t *testing.T) {
	raw := "```json\n" + `{"primary":{"label":"person","confidence":0.9,"box":{"x":0.1,"y":0.2,"w":0.3,"h":0.4},"cx":0.25,"cy":0.4},"description":"a person",}` + "\n```"

	res := ParseFocusResult(raw)
	if res.Primary.Label != "person" || res.Primary.Confidence != 0.9 {
		t.Errorf("Unexpected primary %+v", res.Primary)
	}
	if res.Primary.Cx != 0.25 || res.Primary.Cy != 0.4 {
		t.Errorf("Expected center (0.25,0.4), got (%f,%f)", res.Primary.Cx, res.Primary.Cy)
	}
}

func TestParseFocusResultFallback(t *testing.T) {
	for _, raw := range []string{"I cannot see an image.", `{"primary": nope}`} {
		res := ParseFocusResult(raw)
		if res.Primary.Confidence != 0.1 || res.Primary.Cx != 0.5 || res.Primary.Cy != 0.5 {
			t.Errorf("%q: expected centered low-confidence fallback, got %+v", raw, res.Primary)
		}
	}
}
