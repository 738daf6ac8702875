package cell

// MapAlias records that addr is one of the floppy controller's aliased
// registers (HSR, DAR, MSR, UDR). The bus emulator consults this on every
// cycle to decide whether to publish an alias event; grounded on the
// teacher's SystemBus.MapIO page-keyed region table, simplified to single
// addresses since only four fixed cells ever need an alias, never
// arbitrary ranges.
func (s *Store) MapAlias(addr uint16, label string) {
	s.aliasMu.Lock()
	defer s.aliasMu.Unlock()
	s.alias[addr] = label
}

// AliasAt returns the register label mapped at addr, if any.
func (s *Store) AliasAt(addr uint16) (label string, ok bool) {
	s.aliasMu.RLock()
	defer s.aliasMu.RUnlock()
	label, ok = s.alias[addr]
	return
}
