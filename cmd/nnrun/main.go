// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nnrun is a headless driver that loads a node-net description
// from JSON, runs it for a fixed number of ticks, and prints a snapshot
// of every partition's nodes -- scaffolding to exercise the engine
// library end to end with a plain flag-based main()/usage() shape
// rather than introducing a config-file framework.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/emer/nodenet/engine"
	"github.com/emer/nodenet/nnerr"
	"github.com/emer/nodenet/nnlog"
	"github.com/emer/nodenet/nntype"
	"github.com/emer/nodenet/partition"
)

var (
	netFile = flag.String("net", "", "path to a JSON node-net description")
	ticks   = flag.Int("ticks", 1, "number of ticks to run")
	verbose = flag.Bool("v", false, "enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: nnrun -net <file.json> [-ticks N]\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	nnlog.Verbose = *verbose

	if *netFile == "" {
		usage()
		os.Exit(2)
	}
	if err := run(*netFile, *ticks); err != nil {
		fmt.Fprintln(os.Stderr, "nnrun:", err)
		os.Exit(1)
	}
}

func run(netFile string, ticks int) error {
	raw, err := os.ReadFile(netFile)
	if err != nil {
		return err
	}
	var spec netSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("nnrun: parsing %s: %w", netFile, err)
	}

	ctx := engine.NewContext()
	for _, ps := range spec.Partitions {
		p, err := buildPartition(ps)
		if err != nil {
			return err
		}
		ctx.AddPartition(p)
	}

	for i := 0; i < ticks; i++ {
		if err := ctx.Step(); err != nil {
			return err
		}
	}

	return printSnapshot(ctx)
}

func printSnapshot(ctx *engine.Context) error {
	type snap struct {
		Partition int32                `json:"partition"`
		Step      int64                `json:"step"`
		Nodes     []partition.NodeData `json:"nodes"`
	}
	var out []snap
	for id, p := range ctx.Partitions {
		nodes, _ := p.GetNodeData(nil, nil, false, false)
		out = append(out, snap{Partition: id, Step: p.CurrentStep, Nodes: nodes})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// netSpec is the JSON shape nnrun accepts: one or more partitions, each
// with its nodespace tree, its nodes (assigned ids in declaration order),
// and its intra-partition links.
type netSpec struct {
	Partitions []partitionSpec `json:"partitions"`
}

type partitionSpec struct {
	ID         int32           `json:"id"`
	NoN        int             `json:"noN"`
	NoE        int             `json:"noE"`
	NoNS       int             `json:"noNS"`
	Sparse     bool            `json:"sparse"`
	Nodespaces []nodespaceSpec `json:"nodespaces"`
	Nodes      []nodeSpec      `json:"nodes"`
	Links      []linkSpec      `json:"links"`
}

// nodespaceSpec's own index (in declaration order, 0-based) is its id;
// Parent is another nodespace's declaration index, or -1 for a root.
type nodespaceSpec struct {
	Parent int32 `json:"parent"`
}

// nodeSpec describes one node. Theta is decoded from JSON but
// buildPartition does not apply it to the node's elements.
type nodeSpec struct {
	Type      string  `json:"type"`
	Nodespace int32   `json:"nodespace"`
	Label     string  `json:"label"`
	Theta     float32 `json:"theta"`
}

type linkSpec struct {
	FromElem int32   `json:"fromElem"`
	ToElem   int32   `json:"toElem"`
	Weight   float32 `json:"weight"`
}

var typeNames = map[string]nntype.NodeType{
	"register": nntype.Register, "sensor": nntype.Sensor, "actuator": nntype.Actuator,
	"concept": nntype.Concept, "pipe": nntype.Pipe, "lstm": nntype.LSTM,
	"activator": nntype.Activator, "comment": nntype.Comment,
}

func buildPartition(ps partitionSpec) (*partition.Partition, error) {
	p := partition.New(ps.ID, ps.NoN, ps.NoE, ps.NoNS, ps.Sparse)

	nsIDs := make([]int32, len(ps.Nodespaces))
	for i, nss := range ps.Nodespaces {
		parent := int32(-1)
		if nss.Parent >= 0 && int(nss.Parent) < i {
			parent = nsIDs[nss.Parent]
		}
		id, err := p.CreateNodespace(parent)
		if err != nil {
			return nil, err
		}
		nsIDs[i] = id
	}

	for _, ns := range ps.Nodes {
		typ, ok := typeNames[ns.Type]
		if !ok {
			return nil, nnerr.New(nnerr.InvalidType, "nnrun: partition %d: unknown node type %q", ps.ID, ns.Type)
		}
		nsID := int32(0)
		if int(ns.Nodespace) < len(nsIDs) {
			nsID = nsIDs[ns.Nodespace]
		}
		nodeID, _, err := p.CreateNode(int32(typ), nsID, ns.Label)
		if err != nil {
			return nil, err
		}
		_ = nodeID
	}

	for _, ls := range ps.Links {
		if err := p.CreateLink(ls.FromElem, ls.ToElem, ls.Weight); err != nil {
			return nil, err
		}
	}

	return p, nil
}
