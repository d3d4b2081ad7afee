package db

// SchemaSQL defines the transcript table. Record ids are session ids, so
// each session has exactly one transcript.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS transcript SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session_id ON transcript TYPE int;
    -- JSON array of transcript elements, stored verbatim
    DEFINE FIELD IF NOT EXISTS elements ON transcript TYPE string;
    DEFINE FIELD IF NOT EXISTS element_count ON transcript TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS updated ON transcript TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS transcript_updated ON transcript FIELDS updated;
`
