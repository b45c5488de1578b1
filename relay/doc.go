// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay proves that an event reached its destination through
// the intended relay and not over a direct link.
//
// For an event originating on X that must reach Z through Y, where X
// does not trust Z, the proof under [PolicyStrict] is the conjunction
//
//   - X recorded no delivery attempt of the event to Z,
//   - Y recorded at least one delivery attempt of the event to Z, and
//   - Z recorded ingesting the event.
//
// No single piece is sufficient. Ingestion alone does not show which
// path carried the event, and a relay attempt alone does not show the
// event arrived. [PolicyReachability] accepts ingestion plus an attempt
// from either X or Y; it shows the event arrived but not how, and
// exists only for topologies that cannot rule out a direct path.
package relay
