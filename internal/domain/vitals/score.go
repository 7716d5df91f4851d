package vitals

// HealthScore rates a set of measurements from 0 to 100. Each abnormal
// blood pressure, sugar or BMI value deducts points.
func HealthScore(m Measurements) int {
	score := 100

	if bp := m.BloodPressure; bp != nil {
		switch {
		case bp.Systolic > 140 || bp.Diastolic > 90:
			score -= 20
		case bp.Systolic > 120 || bp.Diastolic > 80:
			score -= 10
		}
	}

	if bs := m.BloodSugar; bs != nil {
		v := bs.MgDL()
		high, elevated := 200.0, 140.0
		if bs.Fasting {
			high, elevated = 126, 100
		}
		switch {
		case v > high:
			score -= 25
		case v > elevated:
			score -= 15
		}
	}

	if bmi, ok := BMI(m); ok {
		switch {
		case bmi > 30 || bmi < 18.5:
			score -= 15
		case bmi > 25 || bmi < 20:
			score -= 10
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

// BMI is weight over height squared; ok is false without both values.
func BMI(m Measurements) (float64, bool) {
	if m.WeightKg == nil || m.HeightCm == nil || *m.HeightCm <= 0 {
		return 0, false
	}
	h := *m.HeightCm / 100
	return *m.WeightKg / (h * h), true
}
