// Package imagecrc computes a diagnostic CRC-32 fingerprint over a loaded
// ROM image. It never participates in a pass/fail decision; it exists so an
// operator can eyeball a short hex fingerprint and confirm the file they
// meant to flash is the one that got loaded.
package imagecrc

import "github.com/snksoft/crc"

var table = crc.NewTable(crc.CRC32)

// Block returns the CRC-32 (IEEE) of data.
func Block(data []byte) uint32 {
	h := crc.NewHashWithTable(table)
	h.Update(data)
	return h.CRC32()
}
