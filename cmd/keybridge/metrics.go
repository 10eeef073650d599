package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var flowsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "keybridge_flows_started",
	Help: "Number of authorization flows started",
}, []string{"provider"})

var loginsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "keybridge_logins_completed",
	Help: "Number of sessions created, by login path",
}, []string{"provider", "path"})

var loginsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "keybridge_logins_failed",
	Help: "Number of login attempts that failed",
}, []string{"provider", "path"})

var sessionsRotated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "keybridge_sessions_rotated",
	Help: "Number of session id rotations",
})

var sessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "keybridge_sessions_revoked",
	Help: "Number of sessions deleted by logout",
})

var walletsLinked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "keybridge_wallets_linked",
	Help: "Number of wallet link operations",
})

var walletsUnlinked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "keybridge_wallets_unlinked",
	Help: "Number of wallet unlink operations",
})
