package client

import "testing"

func TestParseLandmarkResult(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		count int
	}{
		{
			name:  "plain",
			raw:   `{"landmarks":[{"label":"hours","confidence":0.8,"box":{"x":0.4,"y":0.4,"w":0.1,"h":0.1}}],"description":"wall clock"}`,
			count: 1,
		},
		{
			name:  "fenced with comments and trailing comma",
			raw:   "```json\n{\n  // answer\n  \"landmarks\": [\n    {\"label\": \"12\", \"confidence\": 0.9, \"box\": {\"x\": 0.45, \"y\": 0.05, \"w\": 0.1, \"h\": 0.1}},\n  ],\n}\n```",
			count: 1,
		},
		{
			name:  "bare array",
			raw:   `[{"label":"circle","confidence":0.9,"box":{"x":0,"y":0,"w":1,"h":1}},{"label":"center","confidence":0.5,"box":{"x":0.5,"y":0.5,"w":0.02,"h":0.02}}]`,
			count: 2,
		},
		{
			name:  "prose",
			raw:   "I can see a clock showing about three o'clock.",
			count: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseLandmarkResult(tt.raw)
			if err != nil {
				t.Fatalf("ParseLandmarkResult failed: %v", err)
			}
			if len(res.Landmarks) != tt.count {
				t.Errorf("Expected %d landmarks, got %d", tt.count, len(res.Landmarks))
			}
		})
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	got := SanitizeModelJSON("Sure! {\"a\": 1, /* note */ \"b\": [1,2,],} thanks")
	want := `{"a": 1,  "b": [1,2]}`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
