package pkg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVitalSignsLenientNumbers(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantHR  *int
		wantErr bool
	}{
		{name: "integer", body: `{"hr":82}`, wantHR: intValue(82)},
		{name: "whole float", body: `{"hr":82.0}`, wantHR: intValue(82)},
		{name: "numeric string", body: `{"hr":" 82 "}`, wantHR: intValue(82)},
		{name: "null", body: `{"hr":null}`},
		{name: "empty string", body: `{"hr":""}`},
		{name: "absent", body: `{}`},
		{name: "fractional", body: `{"hr":82.5}`, wantErr: true},
		{name: "words", body: `{"hr":"oitenta"}`, wantErr: true},
		{name: "boolean", body: `{"hr":true}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v VitalSigns
			err := json.Unmarshal([]byte(tt.body), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHR, v.HR)
		})
	}
}

func TestVitalSignsDecimalComma(t *testing.T) {
	var r Report
	require.NoError(t, json.Unmarshal([]byte(`{"vitals":{"temp_c":"37,2","bp_systolic":"120","bp_diastolic":80}}`), &r))
	require.NotNil(t, r.Vitals)
	assert.InDelta(t, 37.2, *r.Vitals.TempC, 1e-9)
	assert.Equal(t, 120, *r.Vitals.BPSystolic)
	assert.Equal(t, 80, *r.Vitals.BPDiastolic)
	assert.Nil(t, r.Vitals.HR)
}

func intValue(v int) *int { return &v }
