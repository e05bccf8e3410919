// Package cli provides the interactive bloodlink client.
//
// It wires configuration, the compressor, S3 object storage, the PostgreSQL
// record store and the local attempt journal into a REPL. Typical flow:
// choose a request, select the prescription and blood bag photos, submit,
// then watch the approval stages until the verification is approved or the
// user presses Ctrl-C.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
