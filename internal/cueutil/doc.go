// SPDX-License-Identifier: MPL-2.0

// Package cueutil formats CUE evaluation errors for user-facing messages and
// guards CUE inputs against oversized files.
package cueutil
