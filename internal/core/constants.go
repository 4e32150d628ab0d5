// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

// Global constants that several components need to agree on are defined here.
// If a constant is only needed for a single component, probably it should not
// be placed here.
const (
	// ReplicaCount is the fixed number of replicas every object keeps.
	ReplicaCount = 3

	// FreeUnit is the sentinel unit state meaning "not allocated to any object".
	FreeUnit = -1

	// SliceWidth is the number of steps aggregated into one frequency-table
	// slice during preprocessing (FRE_PER_SLICING in the original tool).
	SliceWidth = 1800

	// ExtraSteps is the number of steps the simulation keeps running after
	// the nominal horizon T to let in-flight reads drain.
	ExtraSteps = 105

	// PageSize is the upper bound on the planner's placement quantum; the
	// planner pages each disk by the largest divisor of V not above it.
	PageSize = 21

	// ReadCostInitial is the token cost of a READ immediately following any
	// non-READ action (or the first READ of the run).
	ReadCostInitial = 64

	// ReadCostFloor is the minimum token cost a decayed READ can reach.
	ReadCostFloor = 16

	// ReadCostDecay is the multiplicative decay applied to consecutive READs.
	ReadCostDecay = 0.8

	// PassCost is the fixed token cost of a PASS action.
	PassCost = 1
)
