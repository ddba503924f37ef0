/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/Muminur/shopgenfy-sub002/internal/log/logtest"
)

func TestService_Start(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	var running atomic.Int32
	unit := newBlockingUnit("srv", &running, nil)
	svc := New(logRecorder, unit)
	go func() {
		require.NoError(t, svc.Start())
	}()
	waitCount(t, &running, 1)
	require.EqualValues(t, 1, unit.metricsRegistered.Load())

	svc.Signals <- os.Interrupt // Sending SIGINT signal to the service.

	waitCount(t, &running, 0)
	require.EqualValues(t, 1, unit.metricsUnregistered.Load())
}

func TestService_StartContext(t *testing.T) {
	ctx, ctxCancel := context.WithCancel(context.Background())

	logRecorder := logtest.NewRecorder()
	var running atomic.Int32
	unit := newBlockingUnit("srv", &running, nil)
	svc := New(logRecorder, unit)
	go func() {
		require.NoError(t, svc.StartContext(ctx))
	}()
	waitCount(t, &running, 1)

	ctxCancel()

	waitCount(t, &running, 0)
}
