// Package ups is a client session layer for an embedded transactional
// key/record store.
//
// ups drives its engine through opaque handles and integer status codes and
// adds what the raw interface lacks:
//   - typed errors (*Error with an ErrorCode and a Kind) for every status
//   - safe buffer marshaling: results are always copied out of the engine's
//     scratch memory, keys are bounded to 32767 bytes
//   - owned, non-copyable handles with idempotent Close and a finalizer
//     safety net for leaked handles
//   - cursor tracking: closing a Database closes its cursors first
//   - named, validated flag sets for moves, finds and inserts
//
// Basic usage:
//
//	env := ups.NewEnvironment()
//	err := env.Create("/path/to/file.db", ups.EnableTransactions, 0644)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	db, err := env.CreateDatabase(1, ups.EnableDuplicateKeys)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = env.Update(func(txn *ups.Transaction) error {
//	    return db.Insert(txn, []byte("key"), []byte("value"), 0)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c, err := db.NewCursor(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	for {
//	    key, rec, ok, err := c.TryMove(ups.MoveNext)
//	    if err != nil || !ok {
//	        break
//	    }
//	    fmt.Printf("%s=%s\n", key, rec)
//	}
//
// Every method of Database and Cursor is safe for concurrent use; calls on
// one database are serialized. Handles should be closed explicitly, the
// finalizer only exists to release handles that were leaked.
package ups
