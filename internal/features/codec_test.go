package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertypro/server/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func testCatalog() []models.PropertyRecord {
	return []models.PropertyRecord{
		{ID: 1, Price: 100, Bedrooms: intPtr(1), Area: floatPtr(50), PropertyType: "Apartment", Region: "Kingston", Amenities: []string{"Pool"}},
		{ID: 2, Price: 300, Bedrooms: intPtr(3), Area: floatPtr(150), PropertyType: "House", Region: "Portmore", Amenities: []string{"gym", "pool"}},
		{ID: 3, Price: 200, PropertyType: "house", Region: "Kingston"},
	}
}

func TestFit_SchemaIsDeterministic(t *testing.T) {
	codec := Fit(testCatalog(), MinMax)

	expected := Schema{
		ColPrice, ColBedrooms, ColBathrooms, ColArea,
		"property_type=apartment", "property_type=house",
		"region=kingston", "region=portmore",
		"amenity=gym", "amenity=pool",
	}
	assert.Equal(t, expected, codec.Schema())
	assert.Equal(t, len(expected), codec.Width())

	reversed := testCatalog()
	reversed[0], reversed[2] = reversed[2], reversed[0]
	assert.Equal(t, expected, Fit(reversed, MinMax).Schema())
}

func TestEncode_MinMax(t *testing.T) {
	catalog := testCatalog()
	codec := Fit(catalog, MinMax)

	vec := codec.Encode(&catalog[0])
	assert.InDeltaSlice(t, []float64{0, 0, 0.5, 0, 1, 0, 1, 0, 0, 1}, vec, 1e-9)

	vec = codec.Encode(&catalog[2])
	// price 200 is the midpoint; missing bedrooms, bathrooms and area are neutral
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5, 0.5, 0, 1, 1, 0, 0, 0}, vec, 1e-9)
}

func TestEncode_Standard(t *testing.T) {
	catalog := testCatalog()
	codec := Fit(catalog, Standard)

	vec := codec.Encode(&catalog[1])
	require.Len(t, vec, codec.Width())
	// mean price 200, population sd ~81.65
	assert.InDelta(t, 100/81.6496580927726, vec[0], 1e-9)
	// missing bathrooms encodes to the mean
	assert.Equal(t, 0.0, vec[2])
}

func TestEncode_UnseenCategoriesAreIgnored(t *testing.T) {
	codec := Fit(testCatalog(), MinMax)

	unseen := models.PropertyRecord{Price: 500, PropertyType: "villa", Region: "Negril", Amenities: []string{"sauna"}}
	vec := codec.Encode(&unseen)
	require.Len(t, vec, codec.Width())
	assert.Equal(t, 2.0, vec[0], "values outside the fitted range are not clipped")
	for _, v := range vec[4:] {
		assert.Equal(t, 0.0, v)
	}
}

func TestFit_EmptyCatalog(t *testing.T) {
	codec := Fit(nil, MinMax)
	assert.Equal(t, 4, codec.Width())
	vec := codec.Encode(&models.PropertyRecord{Price: 10})
	assert.Equal(t, 10.0, vec[0])
}

func TestSchema_VectorZeroFills(t *testing.T) {
	schema := Schema{"a", "b", "c"}

	vec, missing := schema.Vector(Record{"a": 1, "b": 2, "extra": 9})
	assert.Equal(t, []float64{1, 2, 0}, vec)
	assert.Equal(t, []string{"c"}, missing)

	vec, missing = schema.Vector(Record{"a": 1, "b": 2, "c": 3})
	assert.Equal(t, []float64{1, 2, 3}, vec)
	assert.Empty(t, missing)
}

func TestRecord_MatchesEncode(t *testing.T) {
	catalog := testCatalog()
	codec := Fit(catalog, Standard)

	rec := codec.Record(&catalog[1])
	vec, missing := codec.Schema().Vector(rec)
	assert.Empty(t, missing)
	assert.Equal(t, codec.Encode(&catalog[1]), vec)

	merged := rec.Merge(Record{"pref:bedrooms:match": 1})
	assert.Len(t, merged, len(rec)+1)
}
