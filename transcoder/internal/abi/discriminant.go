package abi

// DiscriminantSize: 1 byte for <=256 cases, 2 for <=65536, else 4.
func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

// DiscriminantFits reports whether disc can be stored in size bytes.
func DiscriminantFits(disc uint32, size uint8) bool {
	switch size {
	case 1:
		return disc <= 0xff
	case 2:
		return disc <= 0xffff
	case 4:
		return true
	}
	return false
}
