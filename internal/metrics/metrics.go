package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution sources reported by TemplateResolutions.
const (
	SourceApp      = "app"
	SourceOrg      = "org"
	SourceAncestor = "ancestor"
	SourceDefault  = "default"
	SourceMiss     = "miss"
)

var (
	TemplateResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmplhub_template_resolutions_total",
			Help: "Total number of resolved template lookups by the scope that answered them",
		},
		[]string{"channel", "source"},
	)

	DefaultWritesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmplhub_default_writes_suppressed_total",
			Help: "Template writes skipped or turned into deletes because they matched a system default",
		},
		[]string{"channel", "action"},
	)

	HierarchyDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tmplhub_hierarchy_depth",
			Help:    "Number of organizations visited per resolution",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
		},
	)

	MigratedTemplates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmplhub_legacy_templates_migrated_total",
			Help: "Templates copied from the legacy tree store into the relational store",
		},
		[]string{"channel"},
	)
)
