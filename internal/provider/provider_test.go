package provider

import "testing"

func TestHandleFromName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
	}{
		{"full resource name", "models/veo-test/operations/xyz789", "xyz789"},
		{"bare id", "xyz789", "xyz789"},
		{"trailing slash", "models/veo-test/operations/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := HandleFromName(tt.input)
			if op.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", op.ID, tt.wantID)
			}
			if op.Name != tt.input {
				t.Errorf("Name = %q, want %q", op.Name, tt.input)
			}
		})
	}
}

func TestOperationHandle_IsZero(t *testing.T) {
	if !(OperationHandle{}).IsZero() {
		t.Error("zero handle should report zero")
	}
	if HandleFromName("models/veo-test/operations/xyz789").IsZero() {
		t.Error("populated handle should not report zero")
	}
}
