package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── Prometheus 指标 ──

var (
	// termSubmissions 按校验结果统计学期提交次数
	termSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_term_submissions_total",
		Help: "Total term submissions by outcome kind",
	}, []string{"outcome"})

	// prereqLookups 先修树查询来源：cache | upstream | error
	prereqLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_prereq_lookups_total",
		Help: "Prerequisite tree lookups by source",
	}, []string{"source"})

	// activeSessions 内存中的规划会话数
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_active_sessions",
		Help: "Number of planner sessions held in memory",
	})

	// catalogSyncDuration 课程目录同步耗时
	catalogSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_catalog_sync_duration_seconds",
		Help:    "Catalog sync duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s ~ 64s
	})
)
