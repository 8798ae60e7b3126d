package s3blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("https://e2.example.com", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "exports/a.json", (&Client{}).Key("/exports/a.json"))
	assert.Equal(t, "enricher/exports/a.json", (&Client{prefix: "enricher"}).Key("exports/a.json"))
}
