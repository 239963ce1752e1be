package lastfm

import "testing"

func TestCalculateSignature(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		secret string
		want   string
	}{
		{
			name:   "sorted key value pairs",
			params: map[string]string{"b": "keyB", "a": "keyA"},
			secret: "secret",
			want:   "a86bda943fc58bb78df487a7ece3bc86",
		},
		{
			name: "session exchange",
			params: map[string]string{
				"token":   "yyy",
				"method":  "auth.getSession",
				"api_key": "xxx",
			},
			secret: "ilovecher",
			want:   "6fbd8819d5d7464f4d946b8ea5eeab92",
		},
		{
			name: "format and callback are excluded",
			params: map[string]string{
				"token":    "yyy",
				"method":   "auth.getSession",
				"api_key":  "xxx",
				"format":   "json",
				"callback": "cb",
			},
			secret: "ilovecher",
			want:   "6fbd8819d5d7464f4d946b8ea5eeab92",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateSignature(tt.params, tt.secret); got != tt.want {
				t.Errorf("calculateSignature() = %s, want %s", got, tt.want)
			}
		})
	}
}
