package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "reports/r-1/r-1_final.pdf", ObjectName("r-1", "/var/reports/r-1_final.pdf"))
}

func TestNewMinIO(t *testing.T) {
	m, err := NewMinIO(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "service-reports",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "service-reports", m.bucket)
}
