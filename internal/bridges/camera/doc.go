// Package camera implements the network camera bridge for Gray Logic.
//
// It keeps an in-memory model of every known camera, polls each camera for
// reachability and configuration, and reports the results as small numeric
// attributes ("ST", "GV0".."GVn") to an attribute sink. Cameras can also push
// motion events, which drive a per-camera motion entity.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐   HTTP CGI
//	│   Gray Logic    │   MQTT   │  Camera Bridge  │◄────────► Cameras
//	│      Core       │◄────────►│   (this pkg)    │◄────────  motion push
//	└─────────────────┘          └─────────────────┘   (TCP)
//
// # Key Responsibilities
//
//   - Reconcile discovery results and static entries against known cameras
//   - Poll every camera on a fast and a slow cycle
//   - Report only changed attribute values, or all of them when forced
//   - Write camera settings, keeping failed writes pending for retry
//   - Turn pushed motion notifications into motion state
//   - Publish health status and command acknowledgements
//
// # Vendor Families
//
// Three families are supported: Foscam MJPEG, Foscam HD2 and Amcrest. The
// vendor HTTP requests live in the vendor subpackage behind the Adapter
// interface; this package only maps their results to attributes.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Polls, writes and commands for one camera are serialised.
package camera
