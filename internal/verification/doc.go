// Package verification coordinates one donation-proof submission: it
// compresses the prescription and blood-bag images as they are selected,
// uploads both concurrently, commits a record that references them, and
// deletes the uploads again when the attempt cannot commit.
//
// A Coordinator serves exactly one request id. Callers keep one instance per
// request; the Coordinator does not guard against a second instance.
package verification
