package host

// Backend bundles the host services available to one backend session.
type Backend struct {
	// ID names the session in logs.
	ID string
	// DatabaseID is the OID of the database the session is connected to.
	DatabaseID    OID
	Catalog       Catalog
	Types         TypeResolver
	Locker        AdvisoryLocker
	Xact          TransactionState
	Hooks         *Hooks
	AccessMethods *AccessMethodRegistry
}
