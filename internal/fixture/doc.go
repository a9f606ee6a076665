// Package fixture loads YAML world fixtures and seeds them into a local
// indexer store.
//
// A fixture lists entities in the same wire form the store persists:
//
//	name: arena
//	entities:
//	  - hashed_keys: "0x1"
//	    models:
//	      - name: Position
//	        members:
//	          - name: player
//	            key: true
//	            ty: {primitive: {type: contractaddress, value: "0x1"}}
//	          - name: x
//	            ty: {primitive: {type: u32, value: "5"}}
package fixture
