package feedback

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    Data
		wantErr bool
	}{
		{"valid", Data{Type: TypeStyle, Description: "x", Priority: PriorityHigh}, false},
		{"all types", Data{Type: TypeFeature, Description: "x", Priority: PriorityLow}, false},
		{"unknown type", Data{Type: "rant", Description: "x"}, true},
		{"empty type", Data{Description: "x"}, true},
		{"empty description", Data{Type: TypeContent}, true},
		{"unknown priority", Data{Type: TypeContent, Description: "x", Priority: "urgent"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DefaultsPriority(t *testing.T) {
	d := Data{Type: TypeBehavior, Description: "x"}
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	if d.Priority != PriorityMedium {
		t.Fatalf("empty priority should default to medium, got %q", d.Priority)
	}
}
