package sqlite

// Every resource shares one table. body holds the record as JSON; seq keeps
// insertion order so listings come back in the order records were created.
const createRecords = `CREATE TABLE records (
    resource TEXT NOT NULL,
    id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    body TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (resource, id)
);`

const idxRecordsSeq = `CREATE INDEX idx_records_seq ON records(resource, seq);`

// schemaDDL is executed in order on every open.
var schemaDDL = []string{
	createRecords,
	idxRecordsSeq,
}
