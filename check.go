package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/springbone"
	"github.com/mogaika/vrm_spring_bones/vrm"
)

// checkFiles prints diagnostic report of every file and tries to resolve
// its rig. Returns false if any file has errors.
func checkFiles(paths []string) bool {
	ok := true
	for _, path := range paths {
		fmt.Printf("--- %s\n", path)
		doc, err := vrm.Load(path)
		if err != nil {
			log.Errorf("[check] %v", err)
			ok = false
			continue
		}
		spring, err := vrm.Parse(doc)
		if err != nil {
			log.Errorf("[check] %v", err)
			ok = false
			continue
		}
		report := vrm.Validate(spring, len(doc.Nodes))
		fmt.Print(report.String())
		if !report.Valid() {
			ok = false
			continue
		}

		s, err := vrm.Skeleton(doc)
		if err != nil {
			log.Errorf("[check] %v", err)
			ok = false
			continue
		}
		rig, errs := springbone.NewRig(s, vrm.RigDesc(s, spring, vrm.DefaultOptions()))
		for _, err := range errs {
			fmt.Printf("rig: %v\n", err)
		}
		fmt.Printf("rig: %d chains, %d nodes, %d colliders\n", len(rig.Chains), rig.NodeCount(), len(rig.Colliders))
	}
	return ok
}
