package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoctorTopic(t *testing.T) {
	assert.Equal(t, "doctor-dr-nilutpal-borah", DoctorTopic("Dr. Nilutpal Borah"))
	assert.Equal(t, "doctor-dr-sanjay-kr-buragohain", DoctorTopic("  Dr. Sanjay Kr Buragohain "))
	assert.Equal(t, "doctor", DoctorTopic(""))
}

func TestNotifyNewVisit_NilNotifierIsNoop(t *testing.T) {
	var n *DoctorNotifier
	assert.NoError(t, n.NotifyNewVisit(context.Background(), "Dr. Nilutpal Borah", "OPD-123456", "Rina"))
}
