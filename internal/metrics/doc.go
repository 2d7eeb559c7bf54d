// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes console activity as Prometheus metrics.
//
// Metrics registers on a private registry so embedding hosts keep their own
// default registry clean. Server serves it over HTTP next to health probes.
package metrics
