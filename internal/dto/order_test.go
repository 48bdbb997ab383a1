package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRequestTracksNulls(t *testing.T) {
	var req OrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tracking_number":"TRACK1","status":null}`), &req))
	require.NotNil(t, req.TrackingNumber)
	assert.Equal(t, "TRACK1", *req.TrackingNumber)
	assert.Nil(t, req.Status)
	field, ok := req.NullField()
	assert.True(t, ok)
	assert.Equal(t, "status", field)

	req = OrderRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"customer_id":7}`), &req))
	require.NotNil(t, req.CustomerID)
	assert.Equal(t, int64(7), *req.CustomerID)
	_, ok = req.NullField()
	assert.False(t, ok, "absent fields are not nulls")

	assert.Error(t, json.Unmarshal([]byte(`{"customer_id":"x"}`), &req))
}
