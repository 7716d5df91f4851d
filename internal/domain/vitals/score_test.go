package vitals

import (
	"math"
	"testing"
)

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name string
		m    Measurements
		want int
	}{
		{"nothing abnormal", Measurements{BloodPressure: &BloodPressure{118, 76}}, 100},
		{"elevated bp", Measurements{BloodPressure: &BloodPressure{130, 78}}, 90},
		{"high bp by diastolic", Measurements{BloodPressure: &BloodPressure{135, 95}}, 80},
		{"fasting sugar elevated", Measurements{BloodSugar: &BloodSugar{Value: 110, Fasting: true}}, 85},
		{"fasting sugar high", Measurements{BloodSugar: &BloodSugar{Value: 130, Fasting: true}}, 75},
		{"random sugar elevated", Measurements{BloodSugar: &BloodSugar{Value: 150}}, 85},
		{"random sugar normal", Measurements{BloodSugar: &BloodSugar{Value: 130}}, 100},
		{"mmol converted", Measurements{BloodSugar: &BloodSugar{Value: 7.5, Fasting: true, Unit: UnitMmolL}}, 75},
		{"obese", Measurements{WeightKg: f64(95), HeightCm: f64(170)}, 85},
		{"overweight", Measurements{WeightKg: f64(78), HeightCm: f64(170)}, 90},
		{"weight without height", Measurements{WeightKg: f64(95)}, 100},
		{
			"everything high",
			Measurements{
				BloodPressure: &BloodPressure{160, 100},
				BloodSugar:    &BloodSugar{Value: 250},
				WeightKg:      f64(110), HeightCm: f64(160),
			},
			40,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthScore(tt.m); got != tt.want {
				t.Errorf("HealthScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBMI(t *testing.T) {
	bmi, ok := BMI(Measurements{WeightKg: f64(64), HeightCm: f64(160)})
	if !ok {
		t.Fatal("expected BMI")
	}
	if math.Abs(bmi-25) > 1e-9 {
		t.Errorf("expected 25, got %v", bmi)
	}
	if _, ok := BMI(Measurements{WeightKg: f64(64), HeightCm: f64(0)}); ok {
		t.Error("expected no BMI for zero height")
	}
}
