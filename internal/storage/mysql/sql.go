package mysql

const upsertPreferenceSQL = `
INSERT INTO city_preferences (user_email, city_name, action)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  action     = VALUES(action),
  updated_at = CURRENT_TIMESTAMP
`

const deletePreferenceSQL = `
DELETE FROM city_preferences
WHERE user_email = ? AND city_name = ?
`

const listPreferencesSQL = `
SELECT city_name, action
FROM city_preferences
WHERE user_email = ?
ORDER BY city_name
`
