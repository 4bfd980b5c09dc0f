//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package filemap

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/weaviate/logstore/entities/diskloc"
)

// Corruption is the panic value of violated directory invariants. Continuing
// after one of those would risk deleting or overwriting live data, so the
// background goroutine wrappers never recover from it.
type Corruption struct {
	Op        string
	Locations []diskloc.DiskLocation
	Detail    string
}

func (c *Corruption) Error() string {
	locs := make([]string, len(c.Locations))
	for i, loc := range c.Locations {
		locs[i] = loc.String()
	}
	return fmt.Sprintf("filemap corruption in %s at [%s]: %s", c.Op,
		strings.Join(locs, ", "), c.Detail)
}

func (c *Corruption) Unrecoverable() bool {
	return true
}

// corrupted logs the violation and panics.
func corrupted(logger logrus.FieldLogger, op, detail string,
	locs ...diskloc.DiskLocation,
) {
	c := &Corruption{Op: op, Locations: locs, Detail: detail}
	if logger != nil {
		logger.WithField("action", "filemap_corruption").
			WithField("operation", op).
			WithField("locations", locs).
			Error(c.Error())
	}
	panic(c)
}
