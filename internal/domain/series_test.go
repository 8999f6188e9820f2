package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesBatch() []*Observation {
	r1 := metarAt("KDCA", t0)
	r1.Set(NewProperty("airTemperature", "C", NumberValue(5)))
	r1.Set(NewProperty("flightCategory", "", TextValue("VFR")))

	r2 := metarAt("KDCA", t0.Add(30*time.Minute))
	r2.Set(NewProperty("airTemperature", "C", NoReading))

	r3 := metarAt("KDCA", t0.Add(60*time.Minute))
	r3.Set(NewProperty("airTemperature", "C", NumberValue(3.5)))

	other := metarAt("KBWI", t0.Add(10*time.Minute))
	other.Set(NewProperty("airTemperature", "F", NumberValue(40)))

	return InferIntervals([]*Observation{r3, other, r1, r2}, DefaultInterval)
}

func TestExtractSeries(t *testing.T) {
	samples := CollectSeries("KDCA", []string{"airTemperature", "flightCategory", "windSpeed"}, seriesBatch())
	require.Len(t, samples, 3)

	for i := 1; i < len(samples); i++ {
		assert.True(t, samples[i].Time.After(samples[i-1].Time), "times must strictly increase")
	}

	first := samples[0]
	assert.Equal(t, t0, first.Time)
	require.NotNil(t, first.Values["airTemperature"])
	assert.Equal(t, 5.0, *first.Values["airTemperature"])
	assert.Nil(t, first.Values["flightCategory"], "text maps to null")
	assert.Nil(t, first.Values["windSpeed"], "absent maps to null")
	assert.Contains(t, first.Values, "windSpeed")

	assert.Nil(t, samples[1].Values["airTemperature"], "no reading maps to null")
	assert.Equal(t, 3.5, *samples[2].Values["airTemperature"])
}

func TestExtractSeries_UnknownStationIsEmptyNotNil(t *testing.T) {
	samples := CollectSeries("KXYZ", []string{"airTemperature"}, seriesBatch())
	assert.NotNil(t, samples)
	assert.Empty(t, samples)
}

func TestExtractSeries_Restartable(t *testing.T) {
	seq := ExtractSeries("KDCA", []string{"airTemperature"}, seriesBatch())

	var first, second []time.Time
	for s := range seq {
		first = append(first, s.Time)
	}
	for s := range seq {
		second = append(second, s.Time)
	}
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)

	var taken int
	for range seq {
		taken++
		if taken == 1 {
			break
		}
	}
	assert.Equal(t, 1, taken)
}

func TestExtractSeries_DuplicateTimesCollapse(t *testing.T) {
	a := metarAt("KDCA", t0)
	a.Set(NewProperty("windSpeed", "kt", NumberValue(10)))
	b := metarAt("KDCA", t0)
	b.Set(NewProperty("windSpeed", "kt", NumberValue(12)))
	batch := InferIntervals([]*Observation{a, b}, DefaultInterval)

	samples := CollectSeries("KDCA", []string{"windSpeed"}, batch)
	require.Len(t, samples, 1)
	assert.Equal(t, 12.0, *samples[0].Values["windSpeed"])
}

func TestSample_MarshalJSON(t *testing.T) {
	v := 5.0
	s := Sample{Time: t0, Values: map[string]*float64{"airTemperature": &v, "windSpeed": nil}}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"2024-03-01T12:00:00Z","airTemperature":5,"windSpeed":null}`, string(data))
}

func TestSample_ReservedTimeParameter(t *testing.T) {
	v := 5.0
	_, err := json.Marshal(Sample{Time: t0, Values: map[string]*float64{"time": &v}})
	require.ErrorIs(t, err, ErrReservedParameter)

	assert.ErrorIs(t, ValidateSeriesParams([]string{"windSpeed", "time"}), ErrReservedParameter)
	assert.NoError(t, ValidateSeriesParams([]string{"windSpeed"}))
	assert.NoError(t, ValidateSeriesParams(nil))
}

func TestSyncToNow(t *testing.T) {
	batch := seriesBatch()
	fake := clockwork.NewFakeClockAt(t0.Add(45 * time.Minute))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	got := SyncToNow("KDCA", batch)
	require.NotNil(t, got)
	assert.Equal(t, t0.Add(30*time.Minute), got.ValidFrom)

	fake.Advance(100 * time.Hour)
	assert.Nil(t, SyncToNow("KDCA", batch))
}

func TestUnitData(t *testing.T) {
	rules := []ThresholdRule{{Parameter: "airTemperature", Marginal: 30, Severe: 40}}
	units := UnitData("KDCA", []string{"airTemperature", "flightCategory", "windSpeed"}, seriesBatch(), rules)

	assert.Equal(t, map[string]UnitInfo{
		"airTemperature": {Unit: "C", Label: "Air Temperature (C)"},
		"flightCategory": {Unit: UnknownUnit},
		"windSpeed":      {Unit: UnknownUnit},
	}, units)
}

func TestUnitData_UnknownThresholdedParameter(t *testing.T) {
	rules := []ThresholdRule{{Parameter: "windGust", Marginal: 25, Severe: 35}}
	units := UnitData("KDCA", []string{"windGust"}, nil, rules)
	assert.Equal(t, UnitInfo{Unit: UnknownUnit, Label: "Wind Gust (unknown)"}, units["windGust"])
}
