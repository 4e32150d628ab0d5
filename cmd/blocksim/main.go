// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"os"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blocksim/cmd/blocksim/commands"
)

func main() {
	flag.Parse()
	defer log.Flush()

	if err := commands.Execute(); err != nil {
		log.Errorf("blocksim: %v", err)
		os.Exit(1)
	}
}
