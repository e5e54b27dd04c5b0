package weather

import "strings"

// hourLayout truncates a timestamp to its hour, as written in ISO-8601.
const hourLayout = "2006-01-02T15"

var aqiLabels = map[int]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very Poor",
}

var weekdayAbbreviations = []struct{ full, short string }{
	{"Monday", "Mon"},
	{"Tuesday", "Tue"},
	{"Wednesday", "Wed"},
	{"Thursday", "Thu"},
	{"Friday", "Fri"},
	{"Saturday", "Sat"},
	{"Sunday", "Sun"},
}

// AQILabel maps an air quality index (1-5) to its label. Unknown values map to "".
func AQILabel(aqi int) string {
	return aqiLabels[aqi]
}

// MergeDayNight folds each nighttime period into the daytime period before it,
// carrying the night temperature as TemperatureMin. A nighttime period with no
// unpaired daytime period before it stands alone with only TemperatureMin set.
// At most MaxPeriods merged periods are returned, in input order.
func MergeDayNight(raw []RawPeriod) []ForecastPeriod {
	out := make([]ForecastPeriod, 0, MaxPeriods)
	for _, r := range raw {
		temp := r.Temperature
		if !r.IsDaytime {
			if n := len(out); n > 0 && out[n-1].IsDaytime && out[n-1].TemperatureMin == nil {
				out[n-1].TemperatureMin = &temp
				continue
			}
			p := fromRaw(r)
			p.TemperatureMin = &temp
			out = append(out, p)
			continue
		}
		p := fromRaw(r)
		p.Temperature = &temp
		out = append(out, p)
	}
	if len(out) > MaxPeriods {
		out = out[:MaxPeriods]
	}
	return out
}

func fromRaw(r RawPeriod) ForecastPeriod {
	return ForecastPeriod{
		Number:              r.Number,
		Name:                r.Name,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		IsDaytime:           r.IsDaytime,
		TemperatureUnit:     r.TemperatureUnit,
		PrecipitationChance: r.PrecipitationChance,
		Humidity:            r.Humidity,
		WindSpeed:           r.WindSpeed,
		WindDirection:       r.WindDirection,
		Icon:                r.Icon,
		ShortSummary:        r.ShortForecast,
		DetailedSummary:     r.DetailedForecast,
	}
}

// ShortName compresses a period name for the period cards: full weekday names
// become three-letter abbreviations and the word "This" is dropped.
func ShortName(name string) string {
	s := name
	for _, w := range weekdayAbbreviations {
		s = strings.Replace(s, w.full, w.short, 1)
	}
	s = strings.Replace(s, "This", "", 1)
	return strings.Join(strings.Fields(s), " ")
}

// ApplyAirQuality sets the AQI fields of every period whose start hour matches
// a sample's UTC hour. The first matching sample wins; periods without a match
// are left untouched.
func ApplyAirQuality(periods []ForecastPeriod, samples []AirQualitySample) {
	if len(samples) == 0 {
		return
	}
	for i := range periods {
		start := periods[i].StartTime.Format(hourLayout)
		for _, s := range samples {
			if s.Time.UTC().Format(hourLayout) != start {
				continue
			}
			aqi := s.AQI
			periods[i].AirQualityIndex = &aqi
			periods[i].AirQualityLabel = AQILabel(aqi)
			break
		}
	}
}

// ApplyDetails fills the detail view projections of every period.
func ApplyDetails(periods []ForecastPeriod) {
	for i := range periods {
		periods[i].DetailTemperature = periods[i].DisplayTemperature()
		periods[i].DetailPrecipitation = periods[i].PrecipitationText()
	}
}

// ApplyShortNames fills ShortName for every period.
func ApplyShortNames(periods []ForecastPeriod) {
	for i := range periods {
		periods[i].ShortName = ShortName(periods[i].Name)
	}
}
