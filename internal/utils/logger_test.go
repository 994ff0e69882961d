package utils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestAppNameHookStampsEntries(t *testing.T) {
	hook := &appNameHook{appName: "test-service"}
	entry := &logrus.Entry{Message: "something happened"}

	require.NoError(t, hook.Fire(entry))
	require.Equal(t, "[test-service] something happened", entry.Message)
	require.Equal(t, "test-service", entry.Data["service"])

	// existing fields survive
	entry = &logrus.Entry{
		Message: "with fields",
		Data:    logrus.Fields{"took": time.Second},
	}
	require.NoError(t, hook.Fire(entry))
	require.Equal(t, "test-service", entry.Data["service"])
	require.Equal(t, time.Second, entry.Data["took"])
}
