package snowflake

import "testing"

func TestParseConnectionString(t *testing.T) {
	connStr := "scheme=https;ACCOUNT=HZDABLB-WLB56571;HOST=HZDABLB-WLB56571.azure.snowflakecomputing.com;port=443;USER=testuser;PASSWORD=testpass;DB=IGNITE_DATA_LAKE.ENGAGEMENT;"

	cfg := ParseConnectionString(connStr)

	if cfg.Account != "HZDABLB-WLB56571" {
		t.Errorf("Expected Account 'HZDABLB-WLB56571', got '%s'", cfg.Account)
	}
	if cfg.User != "testuser" {
		t.Errorf("Expected User 'testuser', got '%s'", cfg.User)
	}
	if cfg.Password != "testpass" {
		t.Errorf("Expected Password 'testpass', got '%s'", cfg.Password)
	}
	if cfg.Database != "IGNITE_DATA_LAKE" {
		t.Errorf("Expected Database 'IGNITE_DATA_LAKE', got '%s'", cfg.Database)
	}
	if cfg.Schema != "ENGAGEMENT" {
		t.Errorf("Expected Schema 'ENGAGEMENT', got '%s'", cfg.Schema)
	}
	if cfg.Table != "ENGAGEMENT_EVENTS" {
		t.Errorf("Expected default Table 'ENGAGEMENT_EVENTS', got '%s'", cfg.Table)
	}
}

func TestParseConnectionStringNoTrailingSemicolon(t *testing.T) {
	connStr := "ACCOUNT=test;USER=user;PASSWORD=pass;DB=mydb"

	cfg := ParseConnectionString(connStr)

	if cfg.Account != "test" {
		t.Errorf("Expected Account 'test', got '%s'", cfg.Account)
	}
	if cfg.Database != "mydb" {
		t.Errorf("Expected Database 'mydb', got '%s'", cfg.Database)
	}
}

func TestParseConnectionStringExplicitTable(t *testing.T) {
	cfg := ParseConnectionString("ACCOUNT=a;USER=u;PASSWORD=p;DB=d.s;TABLE=CUSTOM_EVENTS")
	if cfg.Table != "CUSTOM_EVENTS" {
		t.Errorf("Expected Table 'CUSTOM_EVENTS', got '%s'", cfg.Table)
	}
}

func TestIndexOfChar(t *testing.T) {
	if idx := indexOfChar("key=value", '='); idx != 3 {
		t.Errorf("Expected index 3, got %d", idx)
	}
	if idx := indexOfChar("noequals", '='); idx != -1 {
		t.Errorf("Expected index -1, got %d", idx)
	}
	if idx := indexOfChar("", '='); idx != -1 {
		t.Errorf("Expected index -1 for empty string, got %d", idx)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(1); got != "?" {
		t.Errorf("Expected '?', got %q", got)
	}
	if got := placeholders(3); got != "?, ?, ?" {
		t.Errorf("Expected '?, ?, ?', got %q", got)
	}
}
