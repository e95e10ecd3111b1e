package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wordforge/wordforge/pkg/models"
)

func TestTier_Cost(t *testing.T) {
	assert.Equal(t, "0.1", models.TierLite.Cost().String())
	assert.Equal(t, "1", models.TierCore.Cost().String())
	assert.Equal(t, "2", models.TierPro.Cost().String())
}

func TestTier_UnknownDefaultsToPro(t *testing.T) {
	unknown := models.Tier("deluxe")
	assert.False(t, unknown.IsValid())
	assert.Equal(t, models.TierPro.Cost().String(), unknown.Cost().String())
	assert.Equal(t, models.TierPro.EndpointPath(), unknown.EndpointPath())
}

func TestTier_EndpointPath(t *testing.T) {
	assert.Equal(t, "/v1/generate/lite", models.TierLite.EndpointPath())
	assert.Equal(t, "/v1/generate/core", models.TierCore.EndpointPath())
	assert.Equal(t, "/v1/generate/pro", models.TierPro.EndpointPath())
}
