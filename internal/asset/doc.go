// Package asset resolves texture keys to raw encoded bytes.
//
// A key is either a bare name ("1234", "gui/button") probed against an
// extension list, or a name with an extension ("gui/button.png") tried as is
// and with the extension's case swapped. Locators are tried in the order given
// to Chain; the first one that produces bytes wins.
//
// Sources:
//   - FileLocator: configured graphics dir, resource dirs, embedded fs.FS
//   - ObjectLocator: an S3-compatible bucket through minio-go
//
// Files stored with a ".zst" suffix are transparently decompressed.
package asset
