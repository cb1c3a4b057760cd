package integration_test

const (
	dbName         = "marketplace"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	dbImageName    = "postgres:17-alpine"
	cacheImageName = "redis:7"

	TestAdminToken = "integration-admin-token"

	TestBusinessId     = "biz-001"
	TestCustomerName   = "Amina Odhiambo"
	TestCustomerEmail  = "amina@example.com"
	TestCustomerPhone  = "254712345678"
	TestProductId      = "8f14f5f0-4b52-4a1e-9f53-9a2f6d2b7c11"
	TestProductName    = "Ceramic Vase"
	TestCurrency       = "KES"
	TestDeliveryMethod = "rider"

	// The sandbox rail fails any charge whose payer phone ends in 0000.
	TestFailingPhone = "254700000000"
)
