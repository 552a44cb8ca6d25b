package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Endpoint
		wantErr bool
	}{
		{
			name:  "boundary port",
			input: "dicom_directories",
			want:  Endpoint{Port: "dicom_directories"},
		},
		{
			name:  "unit port",
			input: "converter.source_dir",
			want:  Endpoint{Unit: "converter", Port: "source_dir"},
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "missing port name",
			input:   "converter.",
			wantErr: true,
		},
		{
			name:    "missing unit name",
			input:   ".source_dir",
			wantErr: true,
		},
		{
			name:    "too many separators",
			input:   "a.b.c",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestEndpoint_IsBoundary(t *testing.T) {
	assert.True(t, Endpoint{Port: "bvals"}.IsBoundary())
	assert.False(t, Endpoint{Unit: "converter", Port: "bvals"}.IsBoundary())
}

func TestLink_String(t *testing.T) {
	link := Link{
		Source:      Endpoint{Port: "dicom_directories"},
		Destination: Endpoint{Unit: "converter", Port: "source_dir"},
	}
	assert.Equal(t, "dicom_directories -> converter.source_dir", link.String())
}
