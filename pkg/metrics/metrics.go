// Package metrics exposes Prometheus counters for the points economy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PointsEarned counts points credited, labelled by earning reason.
var PointsEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "commute_rewards",
	Name:      "points_earned_total",
	Help:      "Total points credited to accounts, by earning reason.",
}, []string{"reason"})

// PointsRedeemed counts points debited through successful redemptions.
var PointsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "commute_rewards",
	Name:      "points_redeemed_total",
	Help:      "Total points debited through successful redemptions.",
})

// VouchersIssued counts vouchers created, labelled by reward title.
var VouchersIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "commute_rewards",
	Name:      "vouchers_issued_total",
	Help:      "Total vouchers issued, by reward title.",
}, []string{"reward"})

// RedemptionsRejected counts failed redemption attempts, labelled by cause
// (invalid_reward, insufficient_balance, conflict).
var RedemptionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "commute_rewards",
	Name:      "redemptions_rejected_total",
	Help:      "Total rejected redemption attempts, by cause.",
}, []string{"cause"})

// EarnsRejected counts earn attempts rejected before the store was touched.
var EarnsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "commute_rewards",
	Name:      "earns_rejected_total",
	Help:      "Total rejected earn attempts, by cause.",
}, []string{"cause"})
