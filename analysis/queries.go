package analysis

var ClassSummaryQuery = `
SELECT
    class,
    COUNT(*) AS count,
    AVG(percentage) AS mean_percentage,
    MAX(percentage) AS max_percentage
FROM read_parquet('%FILE%')
GROUP BY class
ORDER BY class;
`

var SewerSummaryQuery = `
SELECT
    sewer,
    COUNT(*) AS count,
    MAX(percentage) AS max_percentage
FROM read_parquet('%FILE%')
GROUP BY sewer
ORDER BY max_percentage DESC, sewer
LIMIT %LIMIT%;
`
