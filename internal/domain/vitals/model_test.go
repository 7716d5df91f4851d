package vitals

import (
	"errors"
	"testing"

	"github.com/sahayak/sahayak/internal/platform/apperr"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func TestMeasurements_Validate(t *testing.T) {
	tests := []struct {
		name    string
		m       Measurements
		wantErr bool
		field   string
	}{
		{"empty", Measurements{}, true, ""},
		{"symptoms only", Measurements{Symptoms: []string{"cough"}}, true, ""},
		{"normal bp", Measurements{BloodPressure: &BloodPressure{120, 80}}, false, ""},
		{"systolic below range", Measurements{BloodPressure: &BloodPressure{40, 30}}, true, "blood_pressure.systolic"},
		{"diastolic above range", Measurements{BloodPressure: &BloodPressure{250, 210}}, true, "blood_pressure.diastolic"},
		{"systolic not above diastolic", Measurements{BloodPressure: &BloodPressure{90, 90}}, true, "blood_pressure"},
		{"sugar mg/dL", Measurements{BloodSugar: &BloodSugar{Value: 110, Unit: UnitMgDL}}, false, ""},
		{"sugar default unit", Measurements{BloodSugar: &BloodSugar{Value: 501}}, true, "blood_sugar.value"},
		{"sugar mmol/L", Measurements{BloodSugar: &BloodSugar{Value: 6.2, Unit: UnitMmolL}}, false, ""},
		{"sugar mmol/L too high", Measurements{BloodSugar: &BloodSugar{Value: 30, Unit: UnitMmolL}}, true, "blood_sugar.value"},
		{"sugar unknown unit", Measurements{BloodSugar: &BloodSugar{Value: 5, Unit: "g/L"}}, true, "blood_sugar.unit"},
		{"weight", Measurements{WeightKg: f64(301)}, true, "weight_kg"},
		{"height", Measurements{HeightCm: f64(49)}, true, "height_cm"},
		{"heart rate", Measurements{HeartRate: intp(29)}, true, "heart_rate"},
		{"temperature", Measurements{TemperatureF: f64(111)}, true, "temperature_f"},
		{"temperature ok", Measurements{TemperatureF: f64(98.6)}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if tt.field != "" {
				var ae *apperr.Error
				errors.As(err, &ae)
				if _, ok := ae.Details[tt.field]; !ok {
					t.Errorf("expected detail for %s, got %v", tt.field, ae.Details)
				}
			}
		})
	}
}

func TestBloodSugar_MgDL(t *testing.T) {
	if got := (BloodSugar{Value: 7, Unit: UnitMmolL}).MgDL(); got != 126 {
		t.Errorf("expected 126, got %v", got)
	}
	if got := (BloodSugar{Value: 140, Unit: UnitMgDL}).MgDL(); got != 140 {
		t.Errorf("expected 140, got %v", got)
	}
}
