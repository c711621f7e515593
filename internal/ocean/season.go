package ocean

import "time"

// Baseline is the mean and spread of each variable for a season.
type Baseline struct {
	Name         string
	WaveBase     float64
	WaveVar      float64
	WindBase     float64
	WindVar      float64
	PressureBase float64
	PressureVar  float64
	TempBase     float64
	TempVar      float64
	PeriodBase   float64
	PeriodVar    float64
}

var (
	monsoon = Baseline{
		Name: "monsoon", WaveBase: 2.2, WaveVar: 1.0, WindBase: 8.5, WindVar: 4.0,
		PressureBase: 1002, PressureVar: 8, TempBase: 28.5, TempVar: 1.5,
		PeriodBase: 9.0, PeriodVar: 2.5,
	}
	postMonsoon = Baseline{
		Name: "post-monsoon", WaveBase: 1.8, WaveVar: 1.2, WindBase: 6.0, WindVar: 5.0,
		PressureBase: 1005, PressureVar: 10, TempBase: 27.5, TempVar: 2.0,
		PeriodBase: 8.5, PeriodVar: 3.0,
	}
	preMonsoon = Baseline{
		Name: "pre-monsoon", WaveBase: 1.4, WaveVar: 0.6, WindBase: 5.0, WindVar: 3.0,
		PressureBase: 1008, PressureVar: 5, TempBase: 30.0, TempVar: 2.0,
		PeriodBase: 8.0, PeriodVar: 2.0,
	}
	winter = Baseline{
		Name: "winter", WaveBase: 0.9, WaveVar: 0.4, WindBase: 3.5, WindVar: 2.0,
		PressureBase: 1012, PressureVar: 4, TempBase: 25.5, TempVar: 1.5,
		PeriodBase: 7.5, PeriodVar: 1.5,
	}
)

// SeasonalBaseline returns the baseline for month on the Indian west coast.
func SeasonalBaseline(month time.Month) Baseline {
	switch month {
	case time.June, time.July, time.August, time.September:
		return monsoon
	case time.October, time.November:
		return postMonsoon
	case time.March, time.April, time.May:
		return preMonsoon
	default:
		return winter
	}
}
