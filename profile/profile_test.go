package profile

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/network"
)

func testRoute(t *testing.T) *network.Route {
	t.Helper()

	a := models.Manhole{Code: "A", GroundLevel: 2.0}
	b := models.Manhole{Code: "B", GroundLevel: 2.2}
	c := models.Manhole{Code: "C", GroundLevel: math.NaN()}

	n := network.New([]models.Sewer{
		{
			Code: "AB", Manhole1: a, Manhole2: b, Bob1: 1.0, Bob2: 0.9, Diameter: 0.3, Length: 40,
			Measurements: []models.Measurement{
				{Dist: 10, Bob: 0.95, Obb: 1.25, WaterLevel: 1.0},
				{Dist: 20, Bob: 0.8, Obb: 1.1, WaterLevel: 0.95},
				{Dist: 30, Bob: 0.95, Obb: 1.25, WaterLevel: 0.95},
			},
		},
		{
			Code: "CB", Manhole1: c, Manhole2: b, Bob1: 0.7, Bob2: 0.9, Diameter: 0.3, Length: 25,
			Measurements: []models.Measurement{
				{Dist: 12, Bob: 0.75, Obb: 1.05, WaterLevel: math.NaN()},
			},
		},
	})

	route, err := n.Route([]string{"A", "B", "C"})
	require.NoError(t, err)
	return route
}

func TestRender(t *testing.T) {
	data, err := Render(testRoute(t), 640, 480)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
}

func TestRender_SingleManhole(t *testing.T) {
	n := network.New([]models.Sewer{{
		Code: "AB", Manhole1: models.Manhole{Code: "A"}, Manhole2: models.Manhole{Code: "B"}, Length: 10,
	}})
	route, err := n.Route([]string{"A"})
	require.NoError(t, err)

	data, err := Render(route, 200, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRender_InvalidSize(t *testing.T) {
	_, err := Render(testRoute(t), 0, 100)
	assert.Error(t, err)
}
